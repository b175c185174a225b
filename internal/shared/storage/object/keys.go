package object

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"docscan-backend/internal/shared/util"
)

const (
	tempRoot  = "temp"
	finalRoot = "documents"
	textRoot  = "text"
)

// TempPrefix is the namespace a user may upload raw files into.
func TempPrefix(userID string) string {
	return tempRoot + "/" + userID + "/"
}

// TempKey returns temp/{userId}/{random}_{name}.
func TempKey(userID, fileName string) (string, error) {
	if err := checkSegment(userID); err != nil {
		return "", err
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return TempPrefix(userID) + randomID() + "_" + name, nil
}

// FinalKey returns documents/{userId}/{documentId}/{name}.
func FinalKey(userID, documentID, fileName string) string {
	return path.Join(finalRoot, userID, documentID, fileName)
}

// TextKey returns text/{userId}/{documentId}/{revision}.txt.
func TextKey(userID, documentID, revision string) string {
	return path.Join(textRoot, userID, documentID, revision+".txt")
}

// UserFromTempKey returns the owning user of a temp key.
func UserFromTempKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, tempRoot+"/")
	if !ok {
		return "", false
	}
	userID, name, ok := strings.Cut(rest, "/")
	if !ok || userID == "" || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return userID, true
}

// FileNameFromTempKey strips the temp namespace and random prefix.
func FileNameFromTempKey(key string) string {
	base := path.Base(key)
	if _, name, ok := strings.Cut(base, "_"); ok && name != "" {
		return name
	}
	return base
}

func checkSegment(s string) error {
	if strings.TrimSpace(s) == "" || strings.Contains(s, "/") || strings.Contains(s, "..") {
		return fmt.Errorf("invalid key segment %q", s)
	}
	return nil
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
