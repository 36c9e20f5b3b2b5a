// Package corpus loads document embedding corpora from tab-separated files.
//
// A corpus file holds one document per line: the document id, a tab, and the
// embedding vector as comma-joined decimal floats. The loader makes two
// passes so the whole corpus lands in a single flat float32 allocation; the
// line order of the file fixes the row index used by every later stage.
package corpus
