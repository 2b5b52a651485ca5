/*
Package schemaboi implements a compact, self-describing binary serialization
format with schema evolution.

Values are described by a Schema: a root type and a table of named structs
and enums. Encode and Decode turn values into bytes and back. Write and Read
do the same for documents, which carry their schema with them, so data
written by one version of an application can be read by another: ReadAs
merges the document's schema with the application's, keeps anything the
application does not know about under "_foreign" (fields) or "_unknown"
(enum variants), and fills in defaults for anything the data lacks.

Schemas are usually written in the short form accepted by Expand, or as YAML
through LoadSchema. Schemas themselves are encoded with Metaschema.

Decoded values use plain Go types: map[string]any for structs, []any for
lists, uint64, int64 or *big.Int for integers, and so on. Encoding accepts
the same, as well as Go structs tagged with `sb:"name"`.
*/
package schemaboi
