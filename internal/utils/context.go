package utils

type contextKey string

const (
	SubjectKey contextKey = "subject"
	RoleKey    contextKey = "role"
)

const RoleAdmin = "ADMIN"
