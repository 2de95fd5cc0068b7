// Package testvars loads the variables made available to tests.
//
// Variables come from one or more JSON files. Files are merged in order:
// nested objects are combined key by key and later files win on conflicting
// leaf values. An optional JSON schema can be used to validate every file.
package testvars
