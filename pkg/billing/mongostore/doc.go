// Package mongostore implements billing.Store on MongoDB with mongo-driver/v2.
package mongostore
