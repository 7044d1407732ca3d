package firestore

import "github.com/harvestlink/api/internal/domain"

// paymentDocument mirrors domain.PaymentRecord for orders and bookings alike.
type paymentDocument struct {
	Status        string `firestore:"status"`
	Method        string `firestore:"method,omitempty"`
	TransactionID string `firestore:"transaction_id,omitempty"`
}

func encodePayment(record domain.PaymentRecord) paymentDocument {
	return paymentDocument{
		Status:        string(record.Status),
		Method:        record.Method,
		TransactionID: record.TransactionID,
	}
}

func decodePayment(doc paymentDocument) domain.PaymentRecord {
	return domain.PaymentRecord{
		Status:        domain.PaymentStatus(doc.Status),
		Method:        doc.Method,
		TransactionID: doc.TransactionID,
	}
}
