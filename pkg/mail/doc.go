// Package mail renders outreach messages and delivers them over one reusable
// SMTP session per run.
package mail
