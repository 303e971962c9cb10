package test

// DefaultConverter writes an HTML page per page of a three page document and
// reports progress on stdout the way the conversion engine does.
const DefaultConverter = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
for i in 1 2 3; do
  echo "<p>$i</p>" > "$out/page$i.html"
  echo "page $i"
done
echo "<html></html>" > "$out/index.html"
`

// HangingConverter reports one page and never finishes
const HangingConverter = `#!/bin/sh
echo "page 1"
sleep 60
`

// FailingConverter exits with an error before producing output
const FailingConverter = `#!/bin/sh
echo "conversion failed" >&2
exit 3
`

// preconversionTool stands in for the office suite. It copies a fixture PDF to
// <outdir>/<name>.pdf.
const preconversionTool = `#!/bin/sh
outdir=""
src=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) outdir="$2"; shift 2 ;;
    --convert-to) shift 2 ;;
    -*) shift ;;
    *) src="$1"; shift ;;
  esac
done
cp "%s" "$outdir/${src%%.*}.pdf"
`
