// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"net/url"
	"strings"
)

// REST paths relative to "<server>/api/v1/".
const (
	pathOTDSPath        = "account/otdsPath"
	pathOTDSLogin       = "account/otdsLogin"
	pathCurrentUser     = "account/currentUser"
	pathOTDSCredentials = "v1/authentication/credentials" // relative to the OTDS base path
)

// batchesPath returns "batches?profileName=&batchName=&batchFormat=".
func batchesPath(profile, batchName string, format BatchFormat) string {
	q := url.Values{}
	q.Set("profileName", profile)
	q.Set("batchName", batchName)
	q.Set("batchFormat", string(format))
	return "batches?" + q.Encode()
}

func batchPath(batchID string) string {
	return "batches/" + url.PathEscape(batchID)
}

// inputDocumentsPath optionally tags the new document with a document class.
func inputDocumentsPath(batchID, documentClass string) string {
	p := batchPath(batchID) + "/documentFilesInput/inputDocuments"
	if documentClass != "" {
		p += "?" + url.Values{"documentClassName": {documentClass}}.Encode()
	}
	return p
}

func looseFilesPath(batchID string) string {
	return batchPath(batchID) + "/looseFilesInput/inputFiles"
}

func documentFilesPath(batchID, documentID string) string {
	return batchPath(batchID) + "/documentFilesInput/inputDocuments/" + url.PathEscape(documentID) + "/inputFiles"
}

func operationPath(batchID, operationID, action string) string {
	return batchPath(batchID) + "/operations/" + url.PathEscape(operationID) + "/" + action
}

func batchCreationStatePath(batchID string) string {
	return batchPath(batchID) + "/batchCreationState"
}

func documentClassesPath(profile string) string {
	return "profiles/" + url.PathEscape(profile) + "/documentClasses"
}

// otdsCredentialsURL joins the OTDS base path reported by the server with the
// credentials endpoint. The base path always acts as a directory.
func otdsCredentialsURL(otdsPath string) string {
	return strings.TrimRight(otdsPath, "/") + "/" + pathOTDSCredentials
}
