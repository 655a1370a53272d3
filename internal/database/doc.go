// Package database provides SQLite storage for ingested media metadata.
//
// It handles storage and retrieval of:
//   - Media item records (identity triplet, content digest, technical metadata)
//   - Derivative asset records (thumbnails and contact sheets)
//   - Bucket occupancy counts used by the placement planner
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
