// Package testsupport provides shared helpers for package tests: temp-dir
// configs, store construction, and recording event publishers.
package testsupport
