// Package search maintains a bleve full-text index over confirmed records
// and parses operator queries such as "cấu hình máy xquang ge" into a doc
// type filter plus free text.
package search
