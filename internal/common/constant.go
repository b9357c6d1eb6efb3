package common

// AuthorizationHeaderName is the HTTP header used to carry the bearer token
// on outbound catalog requests.
const AuthorizationHeaderName = "Authorization"

// SessionTTLDays is how long a provider auth session remains resumable.
const SessionTTLDays = 7
