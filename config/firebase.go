package config

import (
	"context"
	"encoding/base64"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var FirebaseApp *firebase.App

// InitFirebase initializes the Firebase Admin SDK
func InitFirebase() {
	ctx := context.Background()

	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		projectID = "fitora-tryon"
	}

	fbConfig := &firebase.Config{
		ProjectID: projectID,
	}

	// Check for base64 encoded credentials first
	if base64Creds := os.Getenv("FIREBASE_CREDENTIALS_BASE64"); base64Creds != "" {
		log.Printf("Using Firebase credentials from base64 environment variable")
		decoded, err := base64.StdEncoding.DecodeString(base64Creds)
		if err != nil {
			log.Fatalf("Error decoding base64 credentials: %v", err)
		}

		opt := option.WithCredentialsJSON(decoded)
		app, err := firebase.NewApp(ctx, fbConfig, opt)
		if err != nil {
			log.Fatalf("error initializing firebase app: %v\n", err)
		}
		FirebaseApp = app
		return
	}

	// Fallback to file-based credentials
	credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if credFile == "" {
		log.Fatalf("Firebase credentials not found. Set FIREBASE_CREDENTIALS_BASE64 or GOOGLE_APPLICATION_CREDENTIALS")
	}

	log.Printf("Using Firebase credentials file: %s", credFile)
	opt := option.WithCredentialsFile(credFile)

	app, err := firebase.NewApp(ctx, fbConfig, opt)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
	}
	FirebaseApp = app
}

// GetAuthClient returns the Firebase Auth client
func GetAuthClient(ctx context.Context) (*auth.Client, error) {
	return FirebaseApp.Auth(ctx)
}

// GetFirestoreClient returns a Firestore client for the configured project
func GetFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	return FirebaseApp.Firestore(ctx)
}
