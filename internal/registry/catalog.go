package registry

import "omnisearch/searchservice/internal/domain"

// Builtin returns the descriptor set the service ships with. Entries with an
// Endpoint are served by the generic REST client; entries without one need a
// bespoke client registered under the same id before they can be selected.
// Rate limits are requests per minute and lean conservative for keyless APIs.
func Builtin() []domain.ProviderDescriptor {
	return []domain.ProviderDescriptor{
		{
			ID:          "wikipedia",
			Name:        "Wikipedia",
			Category:    "reference",
			Priority:    8,
			RateLimit:   90,
			Reliability: 0.98,
			Domains:     []string{"general", "reference"},
			Languages:   []string{"en"},
			Active:      true,
		},
		{
			ID:          "arxiv",
			Name:        "arXiv",
			Category:    "academic",
			Priority:    7,
			RateLimit:   30,
			Reliability: 0.95,
			Domains:     []string{"science", "papers"},
			Languages:   []string{"en"},
			Active:      true,
		},
		{
			ID:           "github",
			Name:         "GitHub Repositories",
			Category:     "code",
			Priority:     7,
			RateLimit:    30,
			Reliability:  0.97,
			RequiresAuth: true,
			Domains:      []string{"code", "software"},
			Active:       true,
		},
		{
			ID:          "hackernews",
			Name:        "Hacker News",
			Category:    "news",
			Priority:    6,
			RateLimit:   60,
			Reliability: 0.96,
			Domains:     []string{"tech", "news"},
			Languages:   []string{"en"},
			Active:      true,
		},
		{
			ID:          "openlibrary",
			Name:        "Open Library",
			Category:    "books",
			Priority:    5,
			RateLimit:   60,
			Reliability: 0.9,
			Domains:     []string{"books", "reference"},
			Active:      true,
		},
		{
			ID:          "pubmed",
			Name:        "PubMed",
			Category:    "academic",
			Priority:    7,
			RateLimit:   20,
			Reliability: 0.94,
			Domains:     []string{"science", "medicine", "papers"},
			Languages:   []string{"en"},
			Active:      true,
		},
		{
			ID:          "europepmc",
			Name:        "Europe PMC",
			Category:    "academic",
			Priority:    6,
			RateLimit:   30,
			Reliability: 0.92,
			Domains:     []string{"science", "medicine", "papers"},
			Active:      true,
			Endpoint:    "https://www.ebi.ac.uk/europepmc/webservices/rest/search?format=json",
			QueryParam:  "query",
			ItemsKey:    "resultList.result",
		},
		{
			ID:          "crossref",
			Name:        "Crossref",
			Category:    "academic",
			Priority:    6,
			RateLimit:   50,
			Reliability: 0.93,
			Domains:     []string{"science", "papers"},
			Active:      true,
			Endpoint:    "https://api.crossref.org/works",
			QueryParam:  "query",
			ItemsKey:    "message.items",
		},
		{
			ID:          "semanticscholar",
			Name:        "Semantic Scholar",
			Category:    "academic",
			Priority:    6,
			RateLimit:   20,
			Reliability: 0.9,
			Domains:     []string{"science", "papers"},
			Active:      true,
			Endpoint:    "https://api.semanticscholar.org/graph/v1/paper/search?fields=title,abstract,url",
			QueryParam:  "query",
			ItemsKey:    "data",
		},
		{
			ID:          "openalex",
			Name:        "OpenAlex",
			Category:    "academic",
			Priority:    5,
			RateLimit:   60,
			Reliability: 0.92,
			Domains:     []string{"science", "papers"},
			Active:      true,
			Endpoint:    "https://api.openalex.org/works",
			QueryParam:  "search",
			ItemsKey:    "results",
		},
		{
			ID:          "stackoverflow",
			Name:        "Stack Overflow",
			Category:    "qa",
			Priority:    6,
			RateLimit:   30,
			Reliability: 0.95,
			Domains:     []string{"code", "qa"},
			Languages:   []string{"en"},
			Active:      true,
			Endpoint:    "https://api.stackexchange.com/2.3/search/advanced?site=stackoverflow&order=desc&sort=relevance",
			QueryParam:  "q",
			ItemsKey:    "items",
		},
		{
			ID:          "wikidata",
			Name:        "Wikidata",
			Category:    "reference",
			Priority:    4,
			RateLimit:   60,
			Reliability: 0.95,
			Domains:     []string{"general", "reference"},
			Active:      true,
			Endpoint:    "https://www.wikidata.org/w/api.php?action=query&list=search&format=json",
			QueryParam:  "srsearch",
			ItemsKey:    "query.search",
		},
		{
			ID:          "gutendex",
			Name:        "Project Gutenberg",
			Category:    "books",
			Priority:    4,
			RateLimit:   30,
			Reliability: 0.85,
			Domains:     []string{"books"},
			Active:      true,
			Endpoint:    "https://gutendex.com/books",
			QueryParam:  "search",
			ItemsKey:    "results",
		},
		{
			ID:          "crates",
			Name:        "crates.io",
			Category:    "code",
			Priority:    4,
			RateLimit:   60,
			Reliability: 0.92,
			Domains:     []string{"code", "software"},
			Active:      true,
			Endpoint:    "https://crates.io/api/v1/crates",
			QueryParam:  "q",
			ItemsKey:    "crates",
		},
		{
			ID:          "archive",
			Name:        "Internet Archive",
			Category:    "reference",
			Priority:    3,
			RateLimit:   30,
			Reliability: 0.85,
			Domains:     []string{"general", "reference", "books"},
			Active:      true,
			Endpoint:    "https://archive.org/advancedsearch.php?output=json&fl%5B%5D=identifier&fl%5B%5D=title&fl%5B%5D=description",
			QueryParam:  "q",
			ItemsKey:    "response.docs",
		},
		{
			ID:           "core",
			Name:         "CORE",
			Category:     "academic",
			Priority:     5,
			RateLimit:    10,
			Reliability:  0.88,
			RequiresAuth: true,
			Domains:      []string{"science", "papers"},
			Active:       true,
			Endpoint:     "https://api.core.ac.uk/v3/search/works",
			QueryParam:   "q",
			ItemsKey:     "results",
		},
		{
			ID:           "newsapi",
			Name:         "NewsAPI",
			Category:     "news",
			Priority:     5,
			RateLimit:    30,
			Reliability:  0.9,
			RequiresAuth: true,
			Domains:      []string{"news"},
			Active:       true,
			Endpoint:     "https://newsapi.org/v2/everything",
			QueryParam:   "q",
			ItemsKey:     "articles",
		},
		{
			ID:           "youtube",
			Name:         "YouTube",
			Category:     "video",
			Priority:     6,
			RateLimit:    30,
			Reliability:  0.97,
			RequiresAuth: true,
			Domains:      []string{"video"},
			Active:       true,
			Endpoint:     "https://www.googleapis.com/youtube/v3/search?part=snippet&type=video",
			QueryParam:   "q",
			ItemsKey:     "items",
		},
	}
}
