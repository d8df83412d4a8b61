// Package repository holds the MySQL data access for participants, status
// history, sites, cohorts, phases, users and reports.  The sentinel errors
// below are shared by every repository and by the services so handlers can
// tell failure scenarios apart.
package repository

import "errors"

// ErrNotFound is returned when a participant, site, cohort or other row
// referenced by a request does not exist.  Handlers translate it into a
// 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// site or region outside their access.  Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be applied because the
// state it was based on has changed, such as a stale currentStatusId or
// a second current history row.  Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")
