// Package auth hands out spendable access tokens for the primary provider.
//
// # Grant Flows
//
// Anonymous requests use one shared application token obtained with the
// client-credentials grant and cached until it nears expiry. Requests made on
// behalf of a linked user use that user's stored [models.Credential], refreshed
// with the refresh-token grant when it is within the expiry margin.
//
// # States
//
// Every call is classified once into a [State]:
//   - [NoUserContext] : no user id supplied, anonymous token
//   - [UserCredentialMissing] : user id has no stored credential, anonymous token
//   - [UserCredentialValid] : stored access token returned as-is
//   - [UserCredentialExpiring] : refreshed, persisted, then returned
//
// There is no background refresh loop. Concurrent refreshes for the same user
// share one upstream call.
//
// # Public vs Authenticated Operations
//
// [Manager.PublicToken] never fails because of a user's credential: a failed
// refresh downgrades to the anonymous token. [Manager.UserToken] is for
// operations on the user's own data and turns the same failure into
// [shared.ErrAuthRequired].
package auth
