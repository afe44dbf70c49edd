package score

// commonFirstNames is the curated dictionary used to decide whether an email
// local-part token looks like a person's first name. Drawn from the most
// frequent given names across the existing membership base; deliberately
// small, because a near-miss here only demotes a guess to review, it never
// blocks a record.
var commonFirstNames = map[string]bool{
	"aaron": true, "adam": true, "alan": true, "albert": true, "alex": true,
	"alexander": true, "alice": true, "amanda": true, "amy": true, "andrea": true,
	"andrew": true, "angela": true, "ann": true, "anna": true, "anne": true,
	"anthony": true, "arthur": true, "ashley": true, "barbara": true, "benjamin": true,
	"beth": true, "betty": true, "beverly": true, "bill": true, "bob": true,
	"bonnie": true, "brandon": true, "brenda": true, "brian": true, "bruce": true,
	"carl": true, "carol": true, "carolyn": true, "catherine": true, "charles": true,
	"cheryl": true, "chris": true, "christina": true, "christine": true, "christopher": true,
	"cynthia": true, "dan": true, "daniel": true, "david": true, "dave": true,
	"deborah": true, "debra": true, "denise": true, "dennis": true, "diana": true,
	"diane": true, "donald": true, "donna": true, "dorothy": true, "douglas": true,
	"edward": true, "elizabeth": true, "emily": true, "emma": true, "eric": true,
	"eugene": true, "evelyn": true, "frances": true, "frank": true, "gary": true,
	"george": true, "gerald": true, "gloria": true, "grace": true, "gregory": true,
	"hannah": true, "harold": true, "harry": true, "heather": true, "helen": true,
	"henry": true, "howard": true, "jack": true, "jacob": true, "james": true,
	"jane": true, "janet": true, "janice": true, "jason": true, "jean": true,
	"jeff": true, "jeffrey": true, "jennifer": true, "jeremy": true, "jerry": true,
	"jessica": true, "jim": true, "joan": true, "joe": true, "john": true,
	"jonathan": true, "joseph": true, "joshua": true, "joyce": true, "juan": true,
	"judith": true, "judy": true, "julia": true, "julie": true, "justin": true,
	"karen": true, "katherine": true, "kathleen": true, "kathryn": true, "kathy": true,
	"keith": true, "kelly": true, "kenneth": true, "kevin": true, "kim": true,
	"kimberly": true, "larry": true, "laura": true, "lawrence": true, "linda": true,
	"lisa": true, "lois": true, "louise": true, "margaret": true, "maria": true,
	"marie": true, "marilyn": true, "mark": true, "martha": true, "mary": true,
	"matthew": true, "megan": true, "melissa": true, "michael": true, "michelle": true,
	"mike": true, "nancy": true, "nathan": true, "nicholas": true, "nicole": true,
	"norma": true, "pamela": true, "patricia": true, "patrick": true, "paul": true,
	"paula": true, "peter": true, "philip": true, "phillip": true, "phyllis": true,
	"rachel": true, "ralph": true, "randy": true, "raymond": true, "rebecca": true,
	"richard": true, "robert": true, "robin": true, "roger": true, "ronald": true,
	"rose": true, "roy": true, "russell": true, "ruth": true, "ryan": true,
	"samantha": true, "samuel": true, "sandra": true, "sara": true, "sarah": true,
	"scott": true, "sean": true, "sharon": true, "shirley": true, "stephanie": true,
	"stephen": true, "steve": true, "steven": true, "susan": true, "tammy": true,
	"teresa": true, "terry": true, "theresa": true, "thomas": true, "timothy": true,
	"tina": true, "todd": true, "tom": true, "victoria": true, "virginia": true,
	"walter": true, "wanda": true, "wayne": true, "william": true, "willie": true,
}

// IsCommonFirstName reports whether a lowercased token is in the dictionary.
func IsCommonFirstName(token string) bool {
	return commonFirstNames[token]
}
