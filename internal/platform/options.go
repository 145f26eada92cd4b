// Package platform wraps the host desktop notification service.
package platform

import "time"

// DefaultAppName is reported to the notification service when Options.AppName
// is empty.
const DefaultAppName = "doodlekiosk"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// AppName identifies the sender. Notification centres group by it.
	AppName string
	// IconPath, when non-empty, points to an image file shown with the
	// notification where the platform supports it.
	IconPath string
	// Timeout is how long the notification stays visible. Zero leaves it to
	// the notification service.
	Timeout time.Duration
}

func (o Options) appName() string {
	if o.AppName == "" {
		return DefaultAppName
	}
	return o.AppName
}

// expireMillis follows the freedesktop convention: -1 means server default.
func (o Options) expireMillis() int32 {
	if o.Timeout <= 0 {
		return -1
	}
	return int32(o.Timeout / time.Millisecond)
}
