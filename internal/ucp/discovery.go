package ucp

// HasCapability reports whether a discovery profile advertises the given
// capability name, mirroring the go-sdk client's discovery helper.
func HasCapability(profile *Profile, name string) bool {
	if profile == nil {
		return false
	}
	for _, cap := range profile.UCP.Capabilities {
		if cap.Name == name {
			return true
		}
	}
	return false
}

// GetCapability returns a capability by name, or nil if not found.
func GetCapability(profile *Profile, name string) *Capability {
	if profile == nil {
		return nil
	}
	for i, cap := range profile.UCP.Capabilities {
		if cap.Name == name {
			return &profile.UCP.Capabilities[i]
		}
	}
	return nil
}

// GetServiceEndpoint returns the REST endpoint for a named service, or
// empty string if the service or its REST binding is absent.
func GetServiceEndpoint(profile *Profile, serviceName string) string {
	if profile == nil {
		return ""
	}
	if svc, ok := profile.UCP.Services[serviceName]; ok && svc.Rest != nil {
		return svc.Rest.Endpoint
	}
	return ""
}

// SupportsAP2Mandate reports whether the checkout capability declares the
// ap2_mandate extension.
func SupportsAP2Mandate(profile *Profile) bool {
	cap := GetCapability(profile, CapabilityCheckout)
	return cap != nil && cap.Extends == ExtensionAP2Mandate
}
