package mqtt

import (
	"fmt"
	"strings"

	"oneinbox/internal/domain"
)

func TopicInboundAll(prefix string) string {
	return fmt.Sprintf("%s/inbound/+", prefix)
}

func TopicInbound(prefix string, platform domain.Platform) string {
	return fmt.Sprintf("%s/inbound/%s", prefix, platform)
}

func TopicOutbound(prefix string, platform domain.Platform) string {
	return fmt.Sprintf("%s/outbound/%s", prefix, platform)
}

// expected: {prefix}/inbound/{platform}
func ParsePlatform(topic, prefix string) (domain.Platform, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) != len(prefixParts)+2 {
		return "", fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return "", fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	if parts[len(prefixParts)] != "inbound" {
		return "", fmt.Errorf("invalid topic pattern: %s", topic)
	}
	platform := parts[len(prefixParts)+1]
	if platform == "" {
		return "", fmt.Errorf("empty platform: %s", topic)
	}
	return domain.Platform(platform), nil
}
