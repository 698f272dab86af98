package smtp

import "encoding/base64"

// step is one command of the exchange together with the reply code that
// lets it proceed. logged replaces line in debug output.
type step struct {
	stage  string
	line   string
	expect int
	logged string
}

// loginSteps returns the AUTH LOGIN exchange: the mechanism, then the
// base64 login and password, each answered by a 334 challenge except the
// last, which must be accepted with 235.
func loginSteps(login, password string) []step {
	return []step{
		{stage: "auth", line: "AUTH LOGIN", expect: 334, logged: "AUTH LOGIN"},
		{stage: "auth login", line: base64.StdEncoding.EncodeToString([]byte(login)), expect: 334, logged: "<login>"},
		{stage: "auth password", line: base64.StdEncoding.EncodeToString([]byte(password)), expect: 235, logged: "<password>"},
	}
}
