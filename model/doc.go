// Package model holds the error codes shared by every overlay package.
//
// Errors cross package and process boundaries (gRPC status, CLI output) by
// code, so callers branch on the code rather than on message text.
package model
