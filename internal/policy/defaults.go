package policy

// DefaultPolicy returns the built-in pattern table from spec section 4.5.
// Sites layer additional rules on top via org/team/project YAML files merged
// with tighten-only semantics (see merge.go), or custom Rego policy (see
// engine.go's OPA overlay).
func DefaultPolicy() *Policy {
	return &Policy{
		Version: 1,
		Rules: []PatternRule{
			{
				Name:    "system-dir-write",
				Pattern: `(^|[\s;|&])(>>?|tee)\s+/(etc|bin|sbin|boot|usr/bin|usr/sbin)(/|\s|$)`,
				Tier:    TierCritical,
				Reason:  "write targets a system directory",
			},
			{
				Name:    "rm-rf-root",
				Pattern: `rm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+/(\s|$)`,
				Tier:    TierCritical,
				Reason:  "recursive force delete of the filesystem root",
			},
			{
				Name:    "fork-bomb",
				Pattern: `:\(\)\s*\{\s*:\|:&\s*\}\s*;\s*:`,
				Tier:    TierCritical,
				Reason:  "shell fork bomb pattern",
			},
			{
				Name:    "dd-to-block-device",
				Pattern: `dd\s+.*of=/dev/sd[a-z]`,
				Tier:    TierCritical,
				Reason:  "raw write to a block device",
			},
			{
				Name:    "mkfs-any",
				Pattern: `\bmkfs(\.\w+)?\b`,
				Tier:    TierCritical,
				Reason:  "formats a filesystem",
			},
			{
				Name:    "chmod-777-root",
				Pattern: `chmod\s+(-R\s+)?777\s+/(\s|$)`,
				Tier:    TierCritical,
				Reason:  "world-writable permissions on the filesystem root",
			},
			{
				Name:    "credential-exfil-command",
				Pattern: `(cat|curl|scp|rsync)\s+.*(\.ssh/id_rsa|\.aws/credentials|\.gnupg/|shadow)\b`,
				Tier:    TierSuperAdmin,
				Reason:  "command reads or transmits credential material",
			},
			{
				Name:    "user-account-modification",
				Pattern: `\b(useradd|userdel|usermod|passwd|visudo)\b`,
				Tier:    TierSuperAdmin,
				Reason:  "modifies system user accounts or sudo policy",
			},
			{
				Name:    "package-manager-install",
				Pattern: `\b(apt-get|apt|yum|dnf|brew)\s+install\b`,
				Tier:    TierSuperAdmin,
				Reason:  "installs system packages",
			},
			{
				Name:    "service-control",
				Pattern: `\b(systemctl|service)\s+(start|stop|restart|enable|disable)\b`,
				Tier:    TierSuperAdmin,
				Reason:  "controls a system service",
			},
		},
	}
}
