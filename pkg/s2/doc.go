// Package s2 implements the S2 (EN 50491-12-2) JSON message set used between
// a Customer Energy Manager and a Resource Manager: the message structs, and
// a codec that discriminates frames by their message_type field.
package s2
