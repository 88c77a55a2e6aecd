package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired       ErrorCode = 40101
	TokenInvalid       ErrorCode = 40102
	InvalidCredentials ErrorCode = 40103

	// Actor lacks the role or membership for the action
	NotAllowed ErrorCode = 40301

	// Resource id does not resolve
	NotFound ErrorCode = 40401

	// Duplicate invitation, already-member, last-admin violation
	Conflict ErrorCode = 40901

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
