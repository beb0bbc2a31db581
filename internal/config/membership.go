package config

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MembershipPolicy controls invitation and signup rules. Values come from an
// optional membership.yml so operators can tune them without a rebuild.
type MembershipPolicy struct {
	InviteTTLHours    int `mapstructure:"inviteTtlHours"`
	MinPasswordLength int `mapstructure:"minPasswordLength"`
}

func DefaultMembershipPolicy() MembershipPolicy {
	return MembershipPolicy{
		InviteTTLHours:    168, // 7 days
		MinPasswordLength: 8,
	}
}

func (p MembershipPolicy) InviteTTL() time.Duration {
	if p.InviteTTLHours <= 0 {
		return time.Duration(DefaultMembershipPolicy().InviteTTLHours) * time.Hour
	}
	return time.Duration(p.InviteTTLHours) * time.Hour
}

// MembershipPolicyHolder exposes the current policy and reloads it when the
// config file changes on disk.
type MembershipPolicyHolder struct {
	current atomic.Value // holds MembershipPolicy
}

func NewMembershipPolicyHolder() (*MembershipPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("membership")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/trustcove/config")
	v.AddConfigPath("/etc/trustcove")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRUSTCOVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMembershipPolicy()
	v.SetDefault("membership.inviteTtlHours", defaults.InviteTTLHours)
	v.SetDefault("membership.minPasswordLength", defaults.MinPasswordLength)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	holder := &MembershipPolicyHolder{}
	if err := holder.load(v); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := holder.load(v); err != nil {
			zap.L().Warn("failed to reload membership policy", zap.Error(err))
		}
	})
	v.WatchConfig()

	return holder, nil
}

func (h *MembershipPolicyHolder) load(v *viper.Viper) error {
	var policy MembershipPolicy
	if err := v.UnmarshalKey("membership", &policy); err != nil {
		return err
	}
	if policy.InviteTTLHours <= 0 {
		policy.InviteTTLHours = DefaultMembershipPolicy().InviteTTLHours
	}
	if policy.MinPasswordLength <= 0 {
		policy.MinPasswordLength = DefaultMembershipPolicy().MinPasswordLength
	}
	h.current.Store(policy)
	return nil
}

// Current returns the active policy.
func (h *MembershipPolicyHolder) Current() MembershipPolicy {
	if h == nil {
		return DefaultMembershipPolicy()
	}
	if policy, ok := h.current.Load().(MembershipPolicy); ok {
		return policy
	}
	return DefaultMembershipPolicy()
}
