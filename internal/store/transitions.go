package store

import "entrypass/scan-service/internal/models"

var transitionMap = map[string][]string{
	models.MethodOnline:          {models.StatusUnredeemed},
	models.MethodOfflineManifest: {models.StatusUnredeemed},
	models.MethodManualOverride:  {models.StatusUnredeemed},
}

// ValidTransition reports whether a redemption via the given method is
// allowed from the given ticket status. Every method requires the ticket to
// still be unredeemed; there is no transition out of redeemed.
func ValidTransition(method, fromStatus string) bool {
	allowed, ok := transitionMap[method]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
