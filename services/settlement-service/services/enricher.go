package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yashrajoria/bulk-settlement/services/settlement-service/models"
	"github.com/yashrajoria/bulk-settlement/services/settlement-service/providers"
	"go.uber.org/zap"
)

var errMIDUnresolved = errors.New("merchant identifier could not be resolved")

// enrichRow derives the MID and display name of one row. The local pattern
// match decides the MID when it hits; the enrichment service supplies the
// display name and, failing the local match, the MID.
func enrichRow(ctx context.Context, provider providers.EnrichmentProvider, row *models.Row, log *zap.Logger) (mid, name string, err error) {
	link := providers.ExtractURL(row.PlaceURL)
	mid, _ = providers.MatchMID(link)

	var details providers.PlaceDetails
	if provider != nil && link != "" {
		details, err = provider.ResolvePlace(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			log.Warn("Place enrichment failed",
				zap.Int("row_index", row.Index),
				zap.String("product_type", string(row.Product.Type)),
				zap.Error(err),
			)
			err = nil
		}
	}

	if mid == "" {
		mid = details.MID
	}
	if mid == "" && row.Product.MIDMandatory {
		return "", "", &RowError{RowIndex: row.Index, Reason: "no merchant identifier found in place_url", Err: errMIDUnresolved}
	}

	name = details.Name
	if name == "" {
		name = row.BusinessName
	}
	if name == "" {
		name = fmt.Sprintf("bulk row #%d", row.Index)
	}
	return mid, name, nil
}
