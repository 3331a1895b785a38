package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"packtrack/infrastructure/scansession"
)

const utf8BOM = "\uFEFF"

var csvHeader = []string{"CODIGO", "FECHA", "HORA", "ENCARGADO", "AREA", "SKU", "CANTIDAD", "PRODUCTO", "EMPRESA", "VENTA"}

var monthNames = [...]string{"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO", "JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE"}

// WriteSessionCSV writes the exported list with a UTF-8 BOM. Codes are
// written as text formulas so spreadsheets keep them verbatim.
func WriteSessionCSV(w io.Writer, exp scansession.Export) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range exp.Items {
		at := it.AddedAt
		if at.IsZero() {
			at = exp.At
		}
		record := []string{
			`="` + it.Code + `"`,
			at.Format("02/01/2006"),
			at.Format("15:04:05"),
			exp.Encargado,
			exp.Area,
			it.SKU,
			strconv.FormatInt(it.Quantity, 10),
			it.Product,
			it.Organization,
			it.SaleReference,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FileName builds <ENCARGADO>-ETIQUETAS(<n>)-<AREA>-<dd-MONTH-yy>-<hh-mm-ss-AM|PM>.csv.
func FileName(exp scansession.Export) string {
	encargado := fileToken(exp.Encargado)
	if encargado == "" {
		encargado = "SIN_NOMBRE"
	}
	at := exp.At
	hour := at.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	ampm := "AM"
	if at.Hour() >= 12 {
		ampm = "PM"
	}
	return fmt.Sprintf("%s-ETIQUETAS(%d)-%s-%02d-%s-%02d-%02d-%02d-%02d-%s.csv",
		encargado,
		len(exp.Items),
		fileToken(exp.Area),
		at.Day(), monthNames[at.Month()-1], at.Year()%100,
		hour, at.Minute(), at.Second(), ampm,
	)
}

func fileToken(s string) string {
	return strings.ReplaceAll(strings.ToUpper(foldAccents(strings.TrimSpace(s))), " ", "_")
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// stamp is the time recorded for an item in the scan log.
func stamp(it scansession.Item, fallback time.Time) time.Time {
	if it.AddedAt.IsZero() {
		return fallback
	}
	return it.AddedAt
}
