package rediskey

import "fmt"

// Risk keys (global convention across services)
const (
	RiskIPPrefix     = "risk:ip"
	RiskDevicePrefix = "risk:device"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildRiskIPKey returns "risk:ip:{ip}"
func BuildRiskIPKey(ip string) string {
	return NamespaceKey(RiskIPPrefix, ip)
}

// BuildRiskDeviceKey returns "risk:device:{fingerprint}"
func BuildRiskDeviceKey(fingerprint string) string {
	return NamespaceKey(RiskDevicePrefix, fingerprint)
}
