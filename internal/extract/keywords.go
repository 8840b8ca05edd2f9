package extract

// Dictionaries for keyword-class indicators. Matching is case-insensitive
// against whole words; the canonical (lowercase) form becomes the indicator
// value so the same family correlates across sources regardless of casing.

var malwareFamilies = []string{
	"lockbit",
	"blackcat",
	"alphv",
	"conti",
	"ryuk",
	"revil",
	"emotet",
	"trickbot",
	"qakbot",
	"qbot",
	"icedid",
	"cobalt strike",
	"sliver",
	"brute ratel",
	"agent tesla",
	"formbook",
	"redline",
	"raccoon",
	"vidar",
	"lumma",
	"stealc",
	"remcos",
	"asyncrat",
	"njrat",
	"darkgate",
	"pikabot",
	"bumblebee",
	"gootloader",
	"socgholish",
	"mirai",
	"gafgyt",
	"xmrig",
}

var threatActors = []string{
	"lazarus",
	"kimsuky",
	"apt28",
	"apt29",
	"apt41",
	"fancy bear",
	"cozy bear",
	"sandworm",
	"turla",
	"fin7",
	"fin8",
	"carbanak",
	"ta505",
	"ta577",
	"wizard spider",
	"scattered spider",
	"lapsus",
	"killnet",
	"mustang panda",
	"volt typhoon",
	"salt typhoon",
	"midnight blizzard",
	"charming kitten",
	"muddywater",
	"oilrig",
}

// attackKeywords are generic technique and campaign terms worth tracking
// even without a named family or actor.
var attackKeywords = []string{
	"ransomware",
	"phishing",
	"zero-day",
	"0day",
	"exploit kit",
	"data breach",
	"credential stuffing",
	"supply chain attack",
	"botnet",
	"ddos",
	"webshell",
	"backdoor",
	"rce",
	"privilege escalation",
	"lateral movement",
	"exfiltration",
	"initial access",
	"c2",
	"command and control",
}
