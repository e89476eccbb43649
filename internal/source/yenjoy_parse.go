package source

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/width"
)

// parseResultDocument walks the known result-page structure:
//
//	table.result-table      finishing table, one tr per bracket
//	div.race-comment        free-text commentary
//	div.lap-section         one per checkpoint (h4 caption + span.rider slots)
//	div.inspection-report   one p per stewards' comment (span.player + text)
func parseResultDocument(doc *goquery.Document) (*ResultPage, error) {
	table := doc.Find("table.result-table")
	if table.Length() == 0 {
		return nil, eris.Wrap(ErrParseFailure, "result table not found")
	}

	page := &ResultPage{}

	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return
		}
		row := ResultRow{
			RankText:         cellText(cells, 0),
			Bracket:          cellInt(cells, 1),
			PlayerName:       cellText(cells, 2),
			Time:             cellText(cells, 3),
			Diff:             cellText(cells, 4),
			LastLapTime:      cellText(cells, 5),
			WinningTechnique: cellText(cells, 6),
			Symbols:          cellText(cells, 7),
			PersonalStatus:   cellText(cells, 8),
		}
		page.Results = append(page.Results, row)
	})

	page.Comment = foldText(doc.Find("div.race-comment").First().Text())

	doc.Find("div.lap-section").Each(func(_ int, sec *goquery.Selection) {
		section := LapSection{Name: foldText(sec.Find("h4").First().Text())}
		sec.Find("span.rider").Each(func(i int, rider *goquery.Selection) {
			bracket, _ := strconv.Atoi(foldText(rider.AttrOr("data-bracket", "")))
			section.Riders = append(section.Riders, LapRider{
				Order:    i + 1,
				Bracket:  bracket,
				Name:     foldText(rider.Text()),
				HasArrow: rider.HasClass("arrow"),
			})
		})
		page.LapSections = append(page.LapSections, section)
	})

	doc.Find("div.inspection-report p").Each(func(_ int, p *goquery.Selection) {
		name := foldText(p.Find("span.player").First().Text())
		text := foldText(p.Clone().Children().Remove().End().Text())
		if name == "" && text == "" {
			return
		}
		page.Inspections = append(page.Inspections, InspectionNote{
			PlayerName: name,
			Text:       text,
		})
	})

	return page, nil
}

func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return foldText(cells.Eq(i).Text())
}

func cellInt(cells *goquery.Selection, i int) int {
	n, _ := strconv.Atoi(cellText(cells, i))
	return n
}

// foldText trims whitespace and folds full-width digits and latin characters
// to their half-width forms; the site prints car numbers and times in
// full-width characters.
func foldText(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}
