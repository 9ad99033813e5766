// Package e2e drives the full pipeline over a generated corpus: ingest
// every document, then assert that retrieval surfaces the right one for
// each query.
package e2e

import (
	"fmt"
	"strings"
	"time"

	"github.com/clearhaven/passage/internal/fileid"
	"github.com/clearhaven/passage/internal/models"
)

// CorpusDocument is one generated document. Its content carries a signature
// phrase that appears nowhere else in the corpus, so query cases can assert
// the correct document is retrieved.
type CorpusDocument struct {
	ID      string
	Title   string
	Content string
}

// Pages returns the document body as a single page, the shape plain-text
// extraction produces.
func (d CorpusDocument) Pages() []models.Page {
	return []models.Page{{PageNumber: 1, RawText: d.Content}}
}

// Document returns the registry entry used when feeding pages straight to
// the ingestor.
func (d CorpusDocument) Document() models.Document {
	return models.Document{
		ID:          d.ID,
		Title:       d.Title,
		ContentHash: fileid.ContentHash([]byte(d.Content)),
		IngestedAt:  time.Now().UTC(),
	}
}

// QueryCase pairs a query with the document IDs that may satisfy it.
// At least one expected ID must appear in the results.
type QueryCase struct {
	Query          string
	ExpectedDocIDs []string
	Description    string
}

// Corpus is the generated document set plus its query cases.
type Corpus struct {
	Documents []CorpusDocument
	Cases     []QueryCase
}

// BuildCorpus generates one document per topic and one query case per
// phrase in queryPhrases.
func BuildCorpus() *Corpus {
	docs := buildDocuments()
	return &Corpus{
		Documents: docs,
		Cases:     buildQueryCases(docs),
	}
}

// Each topic is a title, a signature phrase, and a two-sentence body with
// the phrase in the second sentence. Multi-sentence bodies matter: they
// exercise sentence grouping, not just pass-through.
var corpusTopics = []struct {
	title   string
	phrase  string
	content string
}{
	{"Salt in the Modern Diet", "sodium intake limits", "Most adults consume far more salt than their bodies need. Current sodium intake limits sit near two grams per day for healthy adults."},
	{"Sunlight and Vitamin D", "vitamin D synthesis", "Skin produces an essential nutrient when exposed to midday sun. Vitamin D synthesis slows sharply at high latitudes in winter."},
	{"Whole Grains and Digestion", "dietary fiber fermentation", "Whole grains carry both soluble and insoluble fiber. Dietary fiber fermentation in the colon feeds beneficial bacteria."},
	{"Winding Down at Night", "sleep hygiene routine", "Falling asleep quickly is mostly about consistent habits. A sleep hygiene routine keeps screens and bright light out of the last hour."},
	{"How Long Coffee Lasts", "caffeine half-life", "An afternoon espresso can still be active at midnight. The caffeine half-life in most adults runs five to six hours."},
	{"Bacteria in the Gut", "gut microbiome diversity", "Trillions of microbes digest what we cannot. Gut microbiome diversity correlates with varied, plant-heavy diets."},
	{"Reading Blood Pressure", "blood pressure cuff", "Home monitoring catches trends a yearly checkup misses. A blood pressure cuff should sit level with the heart during the reading."},
	{"Keeping a Starter Alive", "sourdough starter hydration", "A starter is a living culture of flour and water. Sourdough starter hydration controls how fast fermentation proceeds."},
	{"Sharpening Kitchen Knives", "whetstone sharpening angle", "A dull knife is slower and more dangerous than a sharp one. The whetstone sharpening angle for most chef knives is about fifteen degrees."},
	{"Concentrating a Stock", "stock reduction simmer", "Flavor concentrates as water leaves the pot. A stock reduction simmer should never reach a rolling boil."},
	{"Why Mayonnaise Holds", "emulsion oil droplets", "Egg yolk lets oil and water coexist. An emulsion suspends oil droplets so fine they scatter light."},
	{"Pulling a Good Shot", "espresso extraction pressure", "Grind size and tamp decide how water moves through the puck. Espresso extraction pressure sits near nine bars on most machines."},
	{"Caring for Cast Iron", "cast iron seasoning", "A black, glassy surface comes from polymerized oil, not magic. Cast iron seasoning builds up over many thin, baked-on layers."},
	{"Cooking in a Water Bath", "sous vide water bath", "Precise temperature makes overcooking nearly impossible. A sous vide water bath holds steaks within a fraction of a degree."},
	{"Grades of Olive Oil", "extra virgin cold pressed", "Not all bottles labelled olive oil taste of olives. Extra virgin cold pressed oil must pass both chemical and taste panels."},
	{"From Green to Black Tea", "tea leaf oxidation", "Green and black tea start as the same plant. Tea leaf oxidation is what turns the liquor dark and malty."},
	{"Caves Full of Cheese", "cheese aging humidity", "Rind character develops slowly in cool, damp air. Cheese aging humidity stays above ninety percent in traditional caves."},
	{"Building a Compost Pile", "compost carbon nitrogen", "A pile that smells is a pile out of balance. Compost carbon nitrogen ratios near thirty to one break down fastest."},
	{"When to Prune Fruit Trees", "dormant season pruning", "Cutting at the wrong time invites disease. Dormant season pruning lets apple and pear trees heal before the sap rises."},
	{"Testing Garden Soil", "soil pH testing", "Blueberries sulk in sweet soil while lilacs thrive. Soil pH testing tells you which amendments the bed actually needs."},
	{"Planting for Pollinators", "native pollinator plants", "Lawns feed almost nothing. Native pollinator plants support the bees and moths that evolved alongside them."},
	{"Watering Without Waste", "drip irrigation emitters", "Sprinklers lose half their water to evaporation. Drip irrigation emitters put each litre at the root zone instead."},
	{"The Moon Turns Red", "lunar eclipse umbra", "Earth's shadow has a bright outer ring and a dark core. A lunar eclipse umbra passage is what turns the moon copper."},
	{"Finding Distant Worlds", "exoplanet transit dimming", "Planets too far to see still betray themselves. Exoplanet transit dimming drops a star's light by a fraction of a percent."},
	{"Losing the Night Sky", "light pollution skyglow", "Most people live where the Milky Way is invisible. Light pollution skyglow comes mostly from poorly shielded fixtures."},
	{"Choosing a First Telescope", "telescope aperture diameter", "Magnification numbers on the box are marketing. Telescope aperture diameter decides how much you will actually see."},
	{"Caravans Across Asia", "silk road caravans", "Goods moved in relays, not single epic journeys. Silk road caravans rarely travelled more than one segment of the route."},
	{"Print Changes Everything", "movable type printing", "Books went from treasures to commodities in a generation. Movable type printing cut the cost of a page a hundredfold."},
	{"A Shortcut Between Seas", "canal shipping lanes", "The voyage around Africa once took months. Modern canal shipping lanes carry a tenth of world trade through a single channel."},
	{"The Metal That Made an Age", "bronze age tin", "Copper alone is too soft for tools or war. Bronze age tin travelled astonishing distances to reach Mediterranean forges."},
	{"Interest on Interest", "compound interest growth", "Small rates become large sums given time. Compound interest growth doubles money at seven percent in about a decade."},
	{"Owning the Whole Market", "index fund diversification", "Picking winners is harder than it looks. Index fund diversification buys every company instead of guessing."},
	{"Saving Before Investing", "emergency fund months", "Markets are the wrong place for rent money. An emergency fund covering months of expenses comes before any portfolio."},
	{"Money in Rising Prices", "inflation hedge assets", "Cash quietly loses value every year. Classic inflation hedge assets include real estate and inflation-linked bonds."},
	{"Getting Stronger on Purpose", "progressive overload training", "Muscles adapt only to loads they have not met. Progressive overload training adds small increments every week."},
	{"The Easy Miles", "zone two heart rate", "Most endurance gains come from unglamorous effort. Zone two heart rate work feels easy enough to hold a conversation."},
	{"Hips That Still Move", "hip mobility stretches", "Desk years shorten muscles that running needs. Daily hip mobility stretches undo some of the sitting."},
	{"The Weeks Before the Race", "marathon taper mileage", "Fitness is built months out; freshness is built late. Marathon taper mileage drops by half in the final two weeks."},
	{"Life Between the Tides", "tide pool anemones", "Twice a day the ocean abandons its edge. Tide pool anemones close into jelly buttons until the water returns."},
	{"A Thousand-Mile Flight", "monarch butterfly migration", "No single insect completes the round trip. Monarch butterfly migration spans generations between Mexico and Canada."},
	{"Forests Older Than Nations", "old growth canopy", "Some trees were saplings before the printing press. An old growth canopy layers centuries of structure overhead."},
	{"When Reefs Turn White", "coral bleaching temperature", "Corals evict their algae under stress. Coral bleaching temperature thresholds sit barely a degree above summer norms."},
	{"Ice in Retreat", "glacier meltwater lakes", "Mountain ice is a water tower for billions. Growing glacier meltwater lakes mark how fast the ice is leaving."},
	{"The Restless Crust", "plate tectonic boundaries", "Continents drift about as fast as fingernails grow. Plate tectonic boundaries concentrate the planet's earthquakes and volcanoes."},
	{"Drugs That Stop Working", "antibiotic resistance genes", "Bacteria evolve faster than pharmacology. Antibiotic resistance genes pass between species on mobile rings of DNA."},
	{"Harvesting Light", "photosynthesis chlorophyll", "Every food chain starts with captured sunlight. Photosynthesis chlorophyll absorbs red and blue and rejects green."},
	{"Keeping Heat Indoors", "insulation R-value", "Most heating money leaks through the attic. Insulation R-value measures how well a layer resists that flow."},
	{"Heating With Less", "heat pump efficiency", "Moving heat beats making it. Heat pump efficiency can top three units delivered per unit of electricity."},
	{"An Invisible Gas Below", "radon testing basement", "The second-leading cause of lung cancer seeps from bedrock. Radon testing in a basement takes one cheap detector and a month."},
	{"Crossing Time Zones", "jet lag circadian", "The body clock shifts about an hour per day. Jet lag circadian misalignment hits hardest flying east."},
	{"One Ticket, Many Trains", "rail pass validity", "Point-to-point fares add up quickly in Europe. Rail pass validity windows reward trips with many legs."},
	{"Packing for a Month", "packing cubes compression", "A carry-on swallows more than it seems. Packing cubes with compression zippers keep outfits sorted and small."},
	{"Opening the Hive", "beehive frame inspection", "Smoke calms the colony long enough to look inside. A beehive frame inspection checks for brood pattern and queen cells."},
	{"Glass for Birders", "binocular magnification birding", "Shaky hands waste optical power. Binocular magnification for birding rarely needs to exceed eight."},
	{"The First Ten Moves", "chess opening development", "Beginners chase checkmate; masters chase squares. Chess opening development gets every piece off the back rank first."},
	{"Pigments That Settle", "watercolor pigment granulation", "Some paints dry flat while others dry textured. Watercolor pigment granulation leaves mineral particles in the paper's valleys."},
	{"Tuning in Fifths", "violin tuning fifths", "Four strings, three equal gaps. Violin tuning in fifths starts from A and works outward by ear."},
	{"Sewing a Book", "bookbinding sewn signatures", "Glue-only bindings crack and shed pages. Bookbinding with sewn signatures lets a spine flex for centuries."},
	{"Ink by the Gram", "fountain pen nib flex", "Ballpoints need pressure; good pens need none. Fountain pen nib flex varies line width with the lightest touch."},
	{"Reading the Sky", "cold front pressure drop", "Weather arrives along boundaries between air masses. A cold front pressure drop often announces itself hours ahead."},
}

// queryPhrases drive the query cases. Each phrase is a fragment of exactly
// one document's signature phrase.
var queryPhrases = []string{
	"sodium intake", "vitamin D synthesis", "dietary fiber", "sleep hygiene",
	"caffeine half-life", "gut microbiome", "sourdough starter", "whetstone sharpening",
	"stock reduction", "espresso extraction", "cast iron seasoning", "sous vide",
	"tea leaf oxidation", "compost carbon", "dormant season pruning", "soil pH",
	"drip irrigation", "lunar eclipse", "exoplanet transit", "light pollution",
	"telescope aperture", "silk road", "movable type", "bronze age tin",
	"compound interest", "index fund", "emergency fund", "progressive overload",
	"zone two heart rate", "marathon taper", "monarch butterfly", "coral bleaching",
	"glacier meltwater", "plate tectonic", "antibiotic resistance", "photosynthesis chlorophyll",
	"heat pump efficiency", "radon testing", "jet lag circadian", "rail pass",
	"beehive frame", "binocular magnification", "chess opening", "watercolor pigment",
	"violin tuning", "bookbinding sewn", "fountain pen nib", "cold front pressure",
}

func buildDocuments() []CorpusDocument {
	out := make([]CorpusDocument, 0, len(corpusTopics))
	for i, topic := range corpusTopics {
		out = append(out, CorpusDocument{
			ID:      fmt.Sprintf("corpus-%03d", i+1),
			Title:   topic.title,
			Content: topic.content,
		})
	}
	return out
}

func buildQueryCases(docs []CorpusDocument) []QueryCase {
	var cases []QueryCase
	used := make(map[string]bool)
	for _, phrase := range queryPhrases {
		for _, d := range docs {
			if containsPhrase(d, phrase) && !used[d.ID] {
				cases = append(cases, QueryCase{
					Query:          phrase,
					ExpectedDocIDs: []string{d.ID},
					Description:    fmt.Sprintf("query %q finds %s", phrase, d.ID),
				})
				used[d.ID] = true
				break
			}
		}
	}
	return cases
}

func containsPhrase(d CorpusDocument, phrase string) bool {
	return strings.Contains(d.Title, phrase) || strings.Contains(d.Content, phrase)
}
