// Package contact models rows of the outreach contact database: which rows
// are eligible for sending, how the recipient is read from a row, and what is
// written back once the message went out.
package contact
