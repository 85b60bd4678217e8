package screener

import "time"

// Timeouts bounds every wait the screener performs.
type Timeouts struct {
	Poll          time.Duration `mapstructure:"poll" validate:"gt=0"`
	Ready         time.Duration `mapstructure:"ready" validate:"gt=0"`
	DialogOpen    time.Duration `mapstructure:"dialog_open" validate:"gt=0"`
	DialogClose   time.Duration `mapstructure:"dialog_close" validate:"gt=0"`
	ApplyEnabled  time.Duration `mapstructure:"apply_enabled" validate:"gt=0"`
	OptionChecked time.Duration `mapstructure:"option_checked" validate:"gt=0"`
	FastPath      time.Duration `mapstructure:"fast_path" validate:"gt=0"`
	Staleness     time.Duration `mapstructure:"staleness" validate:"gt=0"` // per tier
	Signature     time.Duration `mapstructure:"signature" validate:"gt=0"`
	Consent       time.Duration `mapstructure:"consent" validate:"gt=0"`
}

// DefaultTimeouts returns the production defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Poll:          200 * time.Millisecond,
		Ready:         10 * time.Second,
		DialogOpen:    10 * time.Second,
		DialogClose:   10 * time.Second,
		ApplyEnabled:  8 * time.Second,
		OptionChecked: 10 * time.Second,
		FastPath:      15 * time.Second,
		Staleness:     25 * time.Second,
		Signature:     30 * time.Second,
		Consent:       2 * time.Second,
	}
}
