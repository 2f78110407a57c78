package payments

// MetadataKeys names the checkout session metadata fields. The reconciler
// reads back exactly what checkout wrote, so both must share one value.
type MetadataKeys struct {
	RecipientID     string
	RecipientHandle string
	PlatformFee     string
	TotalAmount     string
}

// NewMetadataKeys builds the key set under prefix.
func NewMetadataKeys(prefix string) MetadataKeys {
	return MetadataKeys{
		RecipientID:     prefix + "recipient_user_id",
		RecipientHandle: prefix + "recipient_username",
		PlatformFee:     prefix + "platform_fee_charged",
		TotalAmount:     prefix + "total_amount_paid_by_donor",
	}
}

func DefaultMetadataKeys() MetadataKeys {
	return NewMetadataKeys("app_")
}
