package dataclass

// Built-in class names.
const (
	Email       = "EMAIL"
	SSN         = "SSN"
	CreditCard  = "CREDIT_CARD"
	PhoneNumber = "PHONE_NUMBER"
	Address     = "ADDRESS"
	Coordinate  = "COORDINATE"
	DOB         = "DOB"
	IPAddress   = "IP_ADDRESS"
	VIN         = "VIN"
)

var builtins = map[string]Class{
	Email: {
		Pattern:    `^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`,
		StringOnly: true,
	},
	SSN: {
		Pattern: `^(?:[0-6]\d{2}|7[0-6]\d|77[0-2])-\d{2}-\d{4}$`,
	},
	CreditCard: {
		Pattern: `^(?:4\d{12}(?:\d{3})?|(?:5[1-5]\d{2}|222[1-9]|22[3-9]\d|2[3-6]\d{2}|27[01]\d|2720)\d{12}|3[47]\d{13}|3(?:0[0-5]|[68]\d)\d{11}|6(?:011|5\d{2})\d{12}|(?:2131|1800|35\d{3})\d{11})$`,
	},
	PhoneNumber: {
		Pattern:    `^(?:\+?1[ .-]?)?(?:\(\d{3}\)|\d{3})[ .-]?\d{3}[ .-]?\d{4}$`,
		StringOnly: true,
	},
	Address: {
		Pattern:    `(?i)^\d{1,6}(?:\s+[a-z0-9.'-]+)+\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl|terrace|circle|parkway|pkwy|highway|hwy)\.?(?:[\s,].*)?$`,
		StringOnly: true,
	},
	Coordinate: {
		Pattern:    `^[-+]?(?:[1-8]?\d(?:\.\d+)?|90(?:\.0+)?),\s*[-+]?(?:180(?:\.0+)?|(?:1[0-7]\d|[1-9]?\d)(?:\.\d+)?)$`,
		StringOnly: true,
	},
	DOB: {
		Pattern:    `^(?:(?:19|20)\d{2}[-/](?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12]\d|3[01])|(?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12]\d|3[01])[-/](?:19|20)\d{2})$`,
		StringOnly: true,
	},
	IPAddress: {
		Pattern:    `^(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)$`,
		StringOnly: true,
	},
	VIN: {
		Pattern: `^[A-HJ-NPR-Z0-9]{17}$`,
	},
}

// Builtins returns a copy of the built-in registry.
func Builtins() map[string]Class {
	out := make(map[string]Class, len(builtins))
	for name, c := range builtins {
		out[name] = c
	}
	return out
}
