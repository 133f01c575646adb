package main

const callbackHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Arcana</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
body{
  background:#120b1f;color:#ece4f7;
  font-family:'JetBrains Mono','SF Mono','Consolas',monospace;
  height:100vh;display:flex;align-items:center;justify-content:center;
}
.card{text-align:center}
.logo{
  font-size:32px;font-weight:700;letter-spacing:12px;margin-bottom:24px;
  background:linear-gradient(90deg,#2e1a47,#b48cf0,#f2d48a);
  -webkit-background-clip:text;background-clip:text;color:transparent;
}
.msg{font-size:14px;color:#f2d48a;font-weight:600;margin-bottom:8px}
.sub{font-size:12px;color:#8a7fa3}
</style>
</head>
<body>
<div class="card">
  <div class="logo">ARCANA</div>
  <div class="msg">You are signed in.</div>
  <div class="sub">Return to your terminal. This tab can be closed.</div>
</div>
</body>
</html>
`
