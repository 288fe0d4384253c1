package fingerprint

// BuiltinName selects the compiled-in set instead of a file or download.
const BuiltinName = "builtin"

// builtinEntries cover the common European PII shapes. Matching is case
// insensitive, so the expressions stay lower-case where letters matter.
var builtinEntries = []Entry{
	// 2 letters, 2 check digits, 4-30 alphanumerics; no MOD-97 check
	{Name: "iban", Pattern: `\b[a-z]{2}\d{2}[a-z0-9]{4,30}\b`},
	{Name: "email", Pattern: `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`},
	// international (+49) or trunk-prefixed (0049) numbers with at least 7 digits
	{Name: "phone", Pattern: `(?:\+|00)[0-9][0-9 \-./]{6,}[0-9]`},
	{Name: "credit_card", Pattern: `\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|3(?:0[0-5]|[68][0-9])[0-9]{11}|6(?:011|5[0-9]{2})[0-9]{12})\b`},
	{Name: "aws_access_key", Pattern: `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`},
	{Name: "private_key", Pattern: `-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`},
	{Name: "official_id_keyword", Pattern: `\b(?:passport|driver's\s+license|ssn|reisepassnummer|führerschein|ausweis|sozialversicherung)\b`},
}

// Builtin compiles the built-in fingerprint set.
func Builtin() *Set {
	set, err := Compile(builtinEntries)
	if err != nil {
		panic(err)
	}
	return set
}
