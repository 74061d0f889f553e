/*
Package database is a small facade over a MongoDB driver.

Open starts connecting in the background and returns straight away. Callers wait for the
connection with Wait, or select on Ready and Errors:

	db := database.Open(ctx, "mongodb://localhost:27017/myproject", nil)
	if err := db.Wait(ctx); err != nil {
		return err
	}
	defer db.Close(ctx)

	res, err := db.Collection("user").InsertMany(ctx, []bson.M{
		{"name": "fengmk2", "type": "JavaScript"},
		{"name": "tj", "type": "go"},
	}, nil)

Collections canonicalise insert options (see package insert) before delegating to the driver,
and repair the driver's insert-many id list afterwards. Driver errors are returned as they are.
*/
package database
