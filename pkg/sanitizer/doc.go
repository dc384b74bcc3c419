// Package sanitizer normalizes caller-supplied booking and account data
// before validation and storage.
//
// All functions are idempotent and handle bad input by returning empty
// strings rather than errors. Normalization includes:
//   - WhatsApp numbers: E.164 format (+[country][number])
//   - Names and notes: collapse whitespace, trim
//   - Service types: lowercase label form
package sanitizer
