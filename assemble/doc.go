// Package assemble turns the parts produced by a code generator into the
// final file set of an installable package.
//
// A generator fills a Bundle: the manifest, entry points, shared intrinsics
// and one Part per library and per command. Assemble places every file under
// the directories named by the bundle's Layout, rejects duplicate paths and
// returns the files sorted by path, so that two runs over the same input
// produce identical output.
package assemble
