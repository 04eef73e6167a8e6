// Package collections ships curated subreddit groupings for common
// social-science research domains, so a study can target a whole
// domain by name instead of maintaining its own list.
package collections

import (
	"fmt"
	"sort"
)

var byName = map[string][]string{
	"finance": {
		"wallstreetbets", "Daytrading", "algotrading", "realestateinvesting",
		"financialindependence", "investing", "stocks", "StockMarket",
		"economy", "GlobalMarkets", "options", "finance", "dividends",
		"pennystocks", "FinancialPlanning", "personalfinance", "retirement",
		"CreditCards", "tax", "FinanceNews", "povertyfinance",
		"SecurityAnalysis", "PFtools",
	},
	"esg": {
		"environment", "energy", "SOPA", "LGBTnews", "environment2",
		"FoodSovereignty", "Environmental_Policy", "lgbt",
	},
	"world-affairs": {
		"worldnews", "news", "worldevents", "NewsPorn", "worldnews2",
		"WikiLeaks", "RepublicOfPolitics", "politics", "politics2",
		"PoliticalDiscussion", "PoliticsPDFs", "NeutralPolitics",
		"moderatepolitics", "geopolitics", "ukpolitics", "euro",
		"MiddleEastNews", "eupolitics",
	},
	"academic": {
		"business", "Economics", "law", "education", "government", "history",
		"economics2", "AskSocialScience", "psychology", "socialscience",
		"PoliticalPhilosophy", "media", "culture", "EconPapers",
		"Anthropology", "marketing", "AskHistorians", "AskHistory",
		"linguistics",
	},
	"mental-health": {
		"traumatoolbox", "socialanxiety", "Anger", "dbtselfhelp",
		"offmychest", "BodyAcceptance", "MMFB", "mentalhealthmemes",
		"nosurf", "mentalhealth",
	},
	"ideology": {
		"Democrat", "Republican", "Liberal", "Conservative", "Libertarian",
		"Anarchism", "socialism", "progressive", "LibertarianLeft",
		"Liberty", "Anarcho_Capitalism", "alltheleft", "neoprogs",
		"blackflag", "LateStageCapitalism", "GreenParty", "democracy",
		"IWW", "Marxism", "LibertarianSocialism", "Capitalism", "Anarchist",
		"republicans", "democrats", "Communist", "SocialDemocracy",
		"Postleftanarchism", "AnarchoPacifism", "georgism", "conservatives",
		"republicanism", "americanpirateparty", "voluntarism", "labor",
		"PirateParty", "Objectivism", "peoplesparty", "feminisms",
		"Egalitarianism", "anarchafeminism", "RadicalFeminism",
	},
	"social-discussion": {
		"Freethought", "Foodforthought", "StateOfTheUnion", "Equality",
		"culturalstudies", "PropagandaPosters", "PoliticalHumor", "racism",
		"Corruption", "chomsky", "propaganda", "votingtheory",
		"changemyview", "Ask_Politics", "anonymous",
	},
	"crypto": {
		"CryptoCurrency", "CryptoMarkets", "defi", "CryptoCurrencyTrading",
		"Crypto_com", "cryptostreetbets", "Crypto_Currency_News", "binance",
		"Bitcoin", "btc", "Monero", "litecoin", "Ripple", "ethereum",
		"Stellar", "NFT", "altcoin", "icocrypto", "CryptoMoonShots",
	},
}

// Lookup returns the subreddits in a named collection.
func Lookup(name string) ([]string, error) {
	subs, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q (see `harbor collections`)", name)
	}
	out := make([]string, len(subs))
	copy(out, subs)
	return out, nil
}

// Names lists the available collections in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
