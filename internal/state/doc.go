// Package state owns the only durable data of voicenotes: the inbound event
// cursor and the table mapping delivered message ids to recording filenames.
//
// The state file looks like
//
//	{
//		"last_update_id": 1234,
//		"message_id_to_filename": {
//			"17": "2024-05-01 walk.m4a",
//			"18": null
//		}
//	}
//
// where null marks a message whose recording was acknowledged and deleted.
// Load rejects anything else with services.ErrMalformedState rather than
// starting over, since an empty table would redeliver every recording still
// on disk. Save writes the whole file atomically; a pass saves exactly once.
//
// Tracker is the only way to read or change the table. AcquireLock keeps two
// passes on the same host from racing on the file.
package state
