package goAccount

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by goAccount APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Password   PasswordConfig
	Enrollment EnrollmentConfig
	TOTP       TOTPConfig
	Session    SessionConfig
	Gate       GateConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Security   SecurityConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goAccount APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength               int
	MinStrengthScore        int // zxcvbn score 0-4, 0 disables the gate
	InvalidateOtherSessions bool
}

/*
====================================
ENROLLMENT CONFIG
====================================
*/

// EnrollmentConfig defines a public type used by goAccount APIs.
//
// EnrollmentConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EnrollmentConfig struct {
	AttemptTTL              time.Duration
	MaxVerificationAttempts int
	BackupCodeCount         int
	BackupCodeLength        int
	RedisPrefix             string
}

// TOTPConfig defines a public type used by goAccount APIs.
//
// TOTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by goAccount APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix           string
	SessionTTL            time.Duration
	MaxSessionsPerAccount int // 0 disables the cap
}

/*
====================================
GATE CONFIG
====================================
*/

// GateConfig defines a public type used by goAccount APIs.
//
// GateConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GateConfig struct {
	EnableThrottle bool
	MaxAttempts    int
	Window         time.Duration
}

// AuditConfig defines a public type used by goAccount APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goAccount APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goAccount APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the [Builder] starts from. Callers
// that only want to override a few fields can take this value, adjust it, and
// pass it to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			Memory:                  65536,
			Time:                    3,
			Parallelism:             2,
			SaltLength:              16,
			KeyLength:               32,
			MinLength:               6,
			MinStrengthScore:        0,
			InvalidateOtherSessions: true,
		},
		Enrollment: EnrollmentConfig{
			AttemptTTL:              10 * time.Minute,
			MaxVerificationAttempts: 5,
			BackupCodeCount:         8,
			BackupCodeLength:        10,
			RedisPrefix:             "ace",
		},
		TOTP: TOTPConfig{
			Issuer:    "",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		Session: SessionConfig{
			RedisPrefix:           "acs",
			SessionTTL:            30 * 24 * time.Hour,
			MaxSessionsPerAccount: 16,
		},
		Gate: GateConfig{
			EnableThrottle: true,
			MaxAttempts:    10,
			Window:         5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MinStrengthScore < 0 || c.Password.MinStrengthScore > 4 {
		return errors.New("Password MinStrengthScore must be between 0 and 4")
	}

	// Enrollment
	if c.Enrollment.AttemptTTL <= 0 {
		return errors.New("Enrollment AttemptTTL must be > 0")
	}
	if c.Enrollment.MaxVerificationAttempts <= 0 {
		return errors.New("Enrollment MaxVerificationAttempts must be > 0")
	}
	if c.Enrollment.BackupCodeCount < 6 {
		return errors.New("Enrollment BackupCodeCount must be >= 6")
	}
	if c.Enrollment.BackupCodeLength <= 0 {
		return errors.New("Enrollment BackupCodeLength must be > 0")
	}
	if c.Enrollment.RedisPrefix == "" {
		return errors.New("Enrollment RedisPrefix must not be empty")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 {
		return errors.New("TOTP Skew must be >= 0")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
		// valid (empty treated as SHA1)
	default:
		return errors.New("TOTP Algorithm must be SHA1, SHA256, or SHA512")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.SessionTTL <= 0 {
		return errors.New("Session SessionTTL must be > 0")
	}
	if c.Session.MaxSessionsPerAccount < 0 {
		return errors.New("Session MaxSessionsPerAccount must be >= 0")
	}

	// Gate
	if c.Gate.EnableThrottle {
		if c.Gate.MaxAttempts <= 0 {
			return errors.New("Gate MaxAttempts must be > 0 when throttle is enabled")
		}
		if c.Gate.Window <= 0 {
			return errors.New("Gate Window must be > 0 when throttle is enabled")
		}
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	if c.Security.ProductionMode {
		if c.Password.Memory < 64*1024 {
			return errors.New("ProductionMode requires Password Memory >= 65536 KB")
		}
		if c.Password.Time < 2 {
			return errors.New("ProductionMode requires Password Time >= 2")
		}
		if c.Password.KeyLength < 32 {
			return errors.New("ProductionMode requires Password KeyLength >= 32")
		}
		if c.Password.MinLength < 6 {
			return errors.New("ProductionMode requires Password MinLength >= 6")
		}
		if c.TOTP.Period > 60 {
			return errors.New("ProductionMode requires TOTP Period <= 60")
		}
		if c.TOTP.Skew > 2 {
			return errors.New("ProductionMode requires TOTP Skew <= 2")
		}
		if c.Enrollment.BackupCodeCount < 8 {
			return errors.New("ProductionMode requires Enrollment BackupCodeCount >= 8")
		}
		if c.Enrollment.BackupCodeLength < 8 {
			return errors.New("ProductionMode requires Enrollment BackupCodeLength >= 8")
		}
		if !c.Gate.EnableThrottle {
			return errors.New("ProductionMode requires Gate throttle to be enabled")
		}
		if c.Session.SessionTTL > 90*24*time.Hour {
			return errors.New("ProductionMode requires Session SessionTTL <= 90d")
		}
	}

	return nil
}
