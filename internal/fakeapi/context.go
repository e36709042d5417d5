package fakeapi

import (
	"context"
	"net/http"
)

func contextWithUser(r *http.Request, u User) context.Context {
	return context.WithValue(r.Context(), userKey, u)
}

func userFrom(r *http.Request) User {
	u, _ := r.Context().Value(userKey).(User)
	return u
}
