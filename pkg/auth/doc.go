/*
Package auth implements Hutch's credential service: password policy and
hashing, login, and bearer token issuance and verification.

# Core Components

Password policy:
  - 8 to 128 code points
  - At least one lowercase letter, uppercase letter, digit, and symbol
    from a fixed set
  - Digests derived with bcrypt at the configured cost (floor 10,
    enforced by pkg/config)

Bearer tokens:
  - HS256 JWTs carrying sub (user id), iat, and exp
  - Signed with the process-wide TOKEN_SECRET
  - Default lifetime 24 hours (TOKEN_TTL)

Service:
  - Register: validate, hash, create the user with a lowercased email
  - Login: verify the password and issue a token
  - Authenticate: resolve a raw token back to its user

# Failure Discipline

Login returns one error ("invalid credentials") whether the email is
unknown or the password is wrong, and an unknown email still pays for a
full bcrypt comparison so response timing does not reveal which case
occurred. Token verification likewise returns one error ("invalid or
expired token") for malformed input, bad signatures, expiry, rejected
algorithms, and users that no longer exist.

# Usage

	svc := auth.New(store, cfg.Auth)

	user, err := svc.Register(ctx, email, password)
	user, token, err := svc.Login(ctx, email, password)
	user, err := svc.Authenticate(ctx, rawToken)

# Integration Points

  - pkg/storage: user persistence and lookup
  - pkg/api: register/login handlers and the bearer middleware
  - pkg/config: secret, TTL, and cost configuration

# See Also

  - pkg/log for the redaction rules that keep credentials out of logs
  - pkg/types for the error kinds returned here
*/
package auth
