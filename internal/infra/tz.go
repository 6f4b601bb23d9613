package infra

import (
	"time"

	"github.com/rs/zerolog/log"
)

// ZonaDefault is the tenant zone used when none is configured.
const ZonaDefault = "America/Sao_Paulo"

// CargarZona resolves an IANA zone name. Unknown names fall back to
// ZonaDefault, and to UTC if even that is unavailable.
func CargarZona(nombre string) *time.Location {
	if nombre == "" {
		nombre = ZonaDefault
	}
	loc, err := time.LoadLocation(nombre)
	if err == nil {
		return loc
	}
	log.Warn().Err(err).Str("tz", nombre).Msg("tz: unknown zone, using default")
	if loc, err = time.LoadLocation(ZonaDefault); err == nil {
		return loc
	}
	return time.UTC
}

// HoyEn formats the calendar day of now in loc as yyyy-mm-dd.
func HoyEn(loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}
