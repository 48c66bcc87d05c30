// Package commandservice implements the signed command protocol: the
// server side that builds and tracks HMAC-signed remote commands, the
// device side that verifies them, and the watchdog that retries or
// escalates commands the device never acknowledged.
package commandservice
