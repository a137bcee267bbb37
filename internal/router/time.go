package router

import "time"

func timeNow() time.Time { return time.Now() }

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }
