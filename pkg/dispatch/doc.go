// Package dispatch runs one outreach pass: query the eligible contacts, send
// each one the rendered message over a single SMTP session and mark the row
// as sent. It also implements the read-only diagnose pass.
package dispatch
