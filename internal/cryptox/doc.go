// Package cryptox provides the authenticated encryption used for cache
// entries at rest: an HKDF-derived AES-256 key and AES-GCM sealing of JSON
// encoded values.
package cryptox
