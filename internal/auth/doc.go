// Package auth binds browsers to chat sessions with signed cookies.
//
// There are no user accounts. A browser's only credential is an HS256 JWT
// whose subject is its chat session ID, stored in an HttpOnly cookie. The
// signature stops a client from guessing or forging another session's short
// ID.
//
//	signer := auth.NewSessionSigner(secret)
//	cookie := &auth.SessionCookie{Name: "alphabot_session", Signer: signer}
//
//	id, err := cookie.Read(r)      // http.ErrNoCookie, ErrInvalidToken, ErrExpiredToken
//	err = cookie.Write(w, sess.ID)
package auth
