/*
Package diamonds prepares the public diamonds dataset for model training.

Prepare fetches the source CSV, recodes the cut, color and clarity columns
to ordinal integers, sanitizes column names, shuffles the rows, splits them
into train and test partitions and writes these artifacts to a blob.Store:

	train_diamonds.parquet   training partition
	test_diamonds.parquet    test partition
	diamonds.csv             first 20 shuffled rows without price
	diamond_prices.csv       the same 20 rows, price only

Example:

	res, err := diamonds.PrepareDir(ctx, "./data", diamonds.WithSeed(42))
	if err != nil {
		return err
	}
	fmt.Println(res.Train.NRows(), res.Test.NRows())
*/
package diamonds
