// Package cooldown persists the login code resend cooldown so it survives restarts.
package cooldown

import (
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/db/controller/setting"
)

// SettingKeyResendCooldown is the fixed settings key holding the cooldown expiry.
const SettingKeyResendCooldown = "login_resend_cooldown_until"

// Until returns the time before which no new code may be requested.
// A missing or unreadable record counts as no cooldown.
func Until(db *gorm.DB) time.Time {
	s, err := setting.Get(db, SettingKeyResendCooldown)
	if err != nil {
		return time.Time{}
	}

	unix, err := strconv.ParseInt(string(s.Value), 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(unix, 0)
}

// Active reports whether the cooldown is still running at now.
func Active(db *gorm.DB, now time.Time) bool {
	return now.Before(Until(db))
}

// Start stores a new cooldown expiry of now+d.
func Start(db *gorm.DB, now time.Time, d time.Duration) error {
	until := now.Add(d).Unix()

	_, err := setting.Set(db, SettingKeyResendCooldown, []byte(strconv.FormatInt(until, 10)))

	return err
}
