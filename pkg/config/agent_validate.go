package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate Agent配置校验
// - api_key 不能为空白
// - emitters 不能重复；启用 forwarder 时必须配置 url
// - custom_checks 不能包含空字符串
func (a *AgentConfig) Validate() error {
	if err := valid.Struct(a); err != nil {
		return err
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return errors.New("agent.api_key cannot be blank")
	}

	seen := map[string]bool{}
	for _, name := range a.Emitters {
		if seen[name] {
			return fmt.Errorf("agent.emitters duplicated entry: %q", name)
		}
		seen[name] = true
	}
	if seen["forwarder"] && a.Forwarder.URL == "" {
		return errors.New("agent.forwarder.url is required when the forwarder emitter is enabled")
	}

	for _, ref := range a.CustomChecks {
		if strings.TrimSpace(ref) == "" {
			return errors.New("agent.custom_checks cannot contain empty string")
		}
	}
	if a.EC2.Enable && a.EC2.Endpoint == "" {
		return errors.New("agent.ec2.endpoint is required when ec2 metadata is enabled")
	}
	return nil
}
