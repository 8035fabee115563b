// Package model defines the domain types exchanged with the clinic API.
//
// Field-level payload schemas belong to the server; these structs only
// mirror the JSON the endpoints return so callers get typed values out of
// the envelope.
package model
